package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"seqgan-go/backend"
	"seqgan-go/seqgan"
	"seqgan-go/transformer"
)

func main() {
	mode := flag.String("mode", "inference", "Run mode: inference (interactive) or eval (dataset)")
	configPath := flag.String("config", "", "YAML engine config file")
	checkpoint := flag.String("checkpoint", "", "Safetensors checkpoint path (random init when empty)")
	tokenizerPath := flag.String("tokenizer", "", "tokenizer.json path (byte-level mock when empty)")
	dataPath := flag.String("data", "", "Dataset JSON file for eval mode")
	runnerKind := flag.String("runner", "native", "Runner backend: native, onnx or http")
	serverURL := flag.String("server", "http://localhost:8000", "Model server URL for the http runner")
	temperature := flag.Float64("temp", 0.0, "Sampling temperature (0=greedy)")
	maxTokens := flag.Int("max-tokens", 64, "Maximum tokens to generate")
	batchSize := flag.Int("batch", 16, "Maximum lockstep batch size")
	flag.Parse()

	var config *seqgan.Config
	var err error
	if *configPath != "" {
		config, err = seqgan.LoadConfigFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		config = seqgan.NewConfig(*checkpoint,
			seqgan.WithTokenizerPath(*tokenizerPath),
			seqgan.WithMaxBatchSize(*batchSize),
			seqgan.WithDefaultMaxNewTokens(*maxTokens),
		)
	}

	tokenizer, vocabSize := loadTokenizer(config)
	runner := loadRunner(*runnerKind, *serverURL, vocabSize, config)

	engine := seqgan.NewEngine(config, runner, tokenizer)
	defer engine.Close()

	params := seqgan.NewSamplingParams(
		seqgan.WithTemperature(*temperature),
		seqgan.WithMaxNewTokens(config.MaxNewTokens),
	)

	switch *mode {
	case "inference":
		runInteractive(engine, params)
	case "eval":
		runEval(engine, params, *dataPath)
	default:
		log.Fatalf("Unknown mode: %s (want inference or eval)", *mode)
	}
}

func loadTokenizer(config *seqgan.Config) (seqgan.Tokenizer, int) {
	if config.TokenizerPath == "" {
		fmt.Println("No tokenizer given, using byte-level fallback")
		return seqgan.NewMockTokenizer(config.EosID), transformer.DefaultConfig().VocabSize
	}

	tokenizer, err := backend.NewVocabTokenizer(config.TokenizerPath)
	if err != nil {
		log.Fatalf("Failed to load tokenizer: %v", err)
	}
	return tokenizer, tokenizer.VocabSize()
}

func loadRunner(kind, serverURL string, vocabSize int, config *seqgan.Config) seqgan.Runner {
	switch kind {
	case "native":
		modelConfig := transformer.DefaultConfig()
		modelConfig.VocabSize = vocabSize
		runner, err := backend.NewNativeRunner(modelConfig, config)
		if err != nil {
			log.Fatalf("Failed to create native runner: %v", err)
		}
		return runner
	case "onnx":
		runner, err := backend.NewONNXRunner(config.Checkpoint, vocabSize, config)
		if err != nil {
			log.Fatalf("Failed to create ONNX runner: %v", err)
		}
		return runner
	case "http":
		runner, err := backend.NewHTTPRunner(serverURL)
		if err != nil {
			log.Fatalf("Failed to connect to model server: %v", err)
		}
		return runner
	default:
		log.Fatalf("Unknown runner: %s (want native, onnx or http)", kind)
		return nil
	}
}

// runInteractive reads source sentences from stdin and prints generations
// until EOF or "quit".
func runInteractive(engine *seqgan.Engine, params *seqgan.SamplingParams) {
	fmt.Println("Enter a source sentence (\"quit\" to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			break
		}

		outputs, err := engine.Generate([]interface{}{line}, params, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Generation failed: %v\n", err)
			continue
		}
		fmt.Println(outputs[0].Text)
	}
}

// runEval generates a target for every source in the dataset and prints
// src/ref/hyp triples.
func runEval(engine *seqgan.Engine, params *seqgan.SamplingParams, dataPath string) {
	if dataPath == "" {
		log.Fatal("eval mode requires -data")
	}

	pairs, err := seqgan.LoadPairs(dataPath)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	fmt.Printf("Loaded %d pairs from %s\n", len(pairs), dataPath)

	prompts := make([]interface{}, len(pairs))
	for i, pair := range pairs {
		prompts[i] = pair.Src
	}

	outputs, err := engine.Generate(prompts, params, true)
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	for i, out := range outputs {
		fmt.Printf("src: %s\nref: %s\nhyp: %s\n\n", pairs[i].Src, pairs[i].Trg, out.Text)
	}
}
