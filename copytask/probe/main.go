package main

import (
	"flag"
	"html/template"
	"log"
	"math/rand"
	"net/http"

	"github.com/ntm-memory/ntm"
	"github.com/ntm-memory/ntm/copytask"
)

var (
	addr = flag.String("addr", ":9000", "address to serve the heat-maps on")
	seed = flag.Int64("seed", 8, "random seed")
	rows = flag.Int("rows", 128, "number of memory rows")
)

type Run struct {
	SeqLen       int
	BitErrors    int
	X            [][]float64
	Reads        [][]float64
	WriteWeights [][]float64
	ReadWeights  [][]float64
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))
	vectorSize := 8
	bank, err := ntm.NewMemoryBank(*rows, vectorSize, rng)
	if err != nil {
		log.Fatalf("%v", err)
	}

	seqLens := []int{10, 20, 30, 50, 120, 200}
	runs := make([]Run, 0, len(seqLens))
	for _, seql := range seqLens {
		x := copytask.GenSeq(rng, seql, vectorSize)
		c, err := copytask.Copy(bank, x)
		if err != nil {
			log.Fatalf("%v", err)
		}
		errs := copytask.BitErrors(x, c.Reads)
		log.Printf("sequence length: %d, bit errors: %d", seql, errs)
		runs = append(runs, Run{
			SeqLen:       seql,
			BitErrors:    errs,
			X:            x,
			Reads:        c.Reads,
			WriteWeights: c.WriteWeights,
			ReadWeights:  c.ReadWeights,
		})
	}

	http.HandleFunc("/", root(runs))
	log.Printf("Listening on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Printf("%v", err)
	}
}

var rootTmpl = template.Must(template.New("").Parse(`
<!DOCTYPE html>
<html>
<head>
  <script type="text/javascript" src="https://d3js.org/d3.v3.js"></script>
</head>
<body>
<script type="text/javascript">
var page = {{.}};
var colors = ["#4575b4","#74add1","#abd9e9","#e0f3f8","#ffffbf","#fee090","#fdae61","#f46d43","#d73027"];

// imshow displays a 2 dimensional matrix, mapping 0.0 to blue and 1.0 to red.
function imshow(parent, matrix) {
  var table = parent.append("table").style("border-spacing", "0px");
  var tr = table.selectAll("tr").data(matrix).
    enter().append("tr");
  var colormap = d3.scale.quantize().domain([0, 1]).range(colors);
  tr.selectAll("td").data(function(d) { return d; }).
    enter().append("td").
    style("background-color", colormap).
    style("min-width", "0.5em").
    style("height", "0.5em");
  return table;
}

var run = d3.select("body").append("div").selectAll("div").
  data(page.Runs).
  enter().append("div");

run.append("h4").text(function(d){ return "Sequence length: "+d.SeqLen+", bit errors: "+d.BitErrors; });
imshow(run, function(d){ return d3.transpose(d.X); });
imshow(run, function(d){ return d3.transpose(d.Reads); });
imshow(run, function(d){ return d3.transpose(d.WriteWeights); });
imshow(run, function(d){ return d3.transpose(d.ReadWeights); });
</script>
</body>
</html>
`))

func root(runs []Run) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		page := struct {
			Runs []Run
		}{
			Runs: runs,
		}
		if err := rootTmpl.Execute(w, page); err != nil {
			log.Printf("%v", err)
		}
	}
}
