package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"runtime/pprof"

	"github.com/ntm-memory/ntm"
	"github.com/ntm-memory/ntm/assocrecall"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	biasFile   = flag.String("biasFile", "", "memory bias in JSON, as written by -saveBias")
	saveBias   = flag.String("saveBias", "", "write the memory bias to this file before exiting")

	seed     = flag.Int64("seed", 8, "random seed")
	runs     = flag.Int("runs", 1000, "number of sequences to recall")
	rows     = flag.Int("rows", 128, "number of memory rows")
	strength = flag.Float64("strength", assocrecall.DefaultParams.KeyStrength, "key strength of the lookup")
	sharpen  = flag.Float64("sharpen", assocrecall.DefaultParams.Sharpen, "sharpening exponent of the lookup")
)

func main() {
	flag.Parse()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	rng := rand.New(rand.NewSource(*seed))
	log.Printf("seed: %d", *seed)

	bank, err := ntm.NewMemoryBank(*rows, assocrecall.ItemSize, rng)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *biasFile != "" {
		loadBias(bank, *biasFile)
	}

	p := assocrecall.Params{KeyStrength: *strength, Sharpen: *sharpen}
	var total float64 = 0
	perfect := 0
	for i := 1; i <= *runs; i++ {
		seq := assocrecall.GenSeq(rng)
		read, _, err := assocrecall.Recall(bank, seq, p)
		if err != nil {
			log.Fatalf("%v", err)
		}
		score := assocrecall.Score(read, seq.Target())
		total += score
		if score == 1 {
			perfect++
		}
		if i%100 == 0 || score < 1 {
			log.Printf("%d, items: %d, query: %d, score: %f", i, len(seq.Items), seq.Query, score)
		}
	}
	log.Printf("mean score: %f, perfect recalls: %d/%d", total/float64(*runs), perfect, *runs)

	if *saveBias != "" {
		writeBias(bank, *saveBias)
	}
}

func loadBias(bank *ntm.MemoryBank, name string) {
	f, err := os.Open(name)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer f.Close()
	if err := bank.LoadBias(f); err != nil {
		log.Fatalf("%v", err)
	}
}

func writeBias(bank *ntm.MemoryBank, name string) {
	f, err := os.Create(name)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := bank.SaveBias(f); err != nil {
		f.Close()
		log.Fatalf("%v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("%v", err)
	}
}
