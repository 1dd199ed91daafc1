package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/ahagan/strata/internal/models"
	"github.com/ahagan/strata/internal/types"
	"github.com/ahagan/strata/pkg/awscfg"
	cfgPkg "github.com/ahagan/strata/pkg/config"
	"github.com/ahagan/strata/pkg/embedder"
	"github.com/ahagan/strata/pkg/invoke"
	"github.com/ahagan/strata/pkg/llm"
	"github.com/ahagan/strata/pkg/loader"
	"github.com/ahagan/strata/pkg/profiles"
	"github.com/ahagan/strata/pkg/provision"
	"github.com/ahagan/strata/pkg/splitter"
	"github.com/ahagan/strata/pkg/store"
)

const usage = `strata - RAG over Bedrock-hosted models

Usage:
  strata ingest   -source <url|path> [flags]   load, split, embed and store documents
  strata chat     [flags]                      interactive Q&A over the stored documents
  strata profiles [-model <id>] [flags]        list or resolve cross-region inference profiles
  strata invoke   -prompt <text> [flags]       one-shot invocation via InvokeModel and Converse
  strata logging  <setup|status|disable>       manage model invocation logging

Flags are shared across modes; run "strata <mode> -h" for the full list.`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	mode := os.Args[1]
	flags := flag.NewFlagSet(mode, flag.ExitOnError)

	var (
		configPath = flags.String("config", "", "Path to config file")
		region     = flags.String("region", "", "AWS region")
		modelID    = flags.String("model", "", "Model or inference profile ID")
		dbURL      = flags.String("db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		source     = flags.String("source", "", "URL or local path to ingest")
		prompt     = flags.String("prompt", "", "Prompt for one-shot invocation")
		accountID  = flags.String("account", "", "AWS account ID for logging provisioning")
		streaming  = flags.Bool("stream", true, "Enable streaming responses")
	)
	if err := flags.Parse(os.Args[2:]); err != nil {
		log.Fatal(err)
	}

	config, err := cfgPkg.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Command line flags override the config file
	if *region != "" {
		config.AWS.Region = *region
	}
	if *modelID != "" {
		config.LLM.ModelID = *modelID
	}
	if *dbURL != "" {
		config.Database.URL = *dbURL
	}
	config.UI.Streaming = *streaming

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	ctx := context.Background()

	awsConfig, err := awscfg.Load(ctx, awscfg.Options{
		Region:          config.AWS.Region,
		Profile:         config.AWS.Profile,
		AccessKeyID:     config.AWS.AccessKeyID,
		SecretAccessKey: config.AWS.SecretAccessKey,
	})
	if err != nil {
		log.Fatal(err)
	}

	app := &app{
		config:  config,
		runtime: bedrockruntime.NewFromConfig(awsConfig),
		control: bedrock.NewFromConfig(awsConfig),
	}
	app.embedder = embedder.NewWithConfig(app.runtime, embedder.EmbedderConfig{
		ModelID:    config.Embedding.ModelID,
		Dimensions: config.Embedding.Dimensions,
		Normalize:  config.Embedding.Normalize,
	})

	switch mode {
	case "ingest":
		err = app.runIngest(ctx, *source)
	case "chat":
		err = app.runChat(ctx)
	case "profiles":
		err = app.runProfiles(ctx, *modelID)
	case "invoke":
		err = app.runInvoke(ctx, *prompt)
	case "logging":
		err = app.runLogging(ctx, awsConfig, flags.Arg(0), *accountID)
	default:
		fmt.Println(usage)
		os.Exit(2)
	}

	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			log.Fatalf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		log.Fatal(err)
	}
}

type app struct {
	config   *cfgPkg.Config
	runtime  *bedrockruntime.Client
	control  *bedrock.Client
	embedder *embedder.Embedder
}

func (a *app) openStore(ctx context.Context) (*store.VectorStore, error) {
	return store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: a.config.Database.URL,
		TableName:  a.config.Database.TableName,
		VectorDim:  a.config.Database.VectorDim,
		BatchSize:  a.config.Database.BatchSize,
	}, a.embedder)
}

func (a *app) newLoader(source string, onProgress func(string)) (types.Loader, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return loader.NewWebLoader(loader.WebConfig{
			BaseURL:           source,
			MaxDepth:          a.config.Loader.MaxDepth,
			RateLimit:         a.config.Loader.RateLimit,
			IgnorePatterns:    a.config.Loader.IgnorePatterns,
			AllowedExtensions: a.config.Loader.AllowedExtensions,
			OnProgress:        onProgress,
		})
	}
	return loader.NewFileLoader(loader.FileConfig{
		Root:       source,
		OnProgress: onProgress,
	})
}

func (a *app) runIngest(ctx context.Context, source string) error {
	if source == "" {
		return fmt.Errorf("ingest requires -source")
	}

	var loadedCount int32
	docLoader, err := a.newLoader(source, func(string) {
		atomic.AddInt32(&loadedCount, 1)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize loader: %v", err)
	}

	split, err := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:    a.config.Splitter.ChunkSize,
		ChunkOverlap: a.config.Splitter.ChunkOverlap,
		SizeUnit:     a.config.Splitter.SizeUnit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize splitter: %v", err)
	}

	vectorStore, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	color.Blue("\nStarting ingestion pipeline for %s\n", source)

	loadingBar := getProgressBar(-1, "Loading documents...")
	startTime := time.Now()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			count := atomic.LoadInt32(&loadedCount)
			loadingBar.Set(int(count))
			if count > 0 {
				rate := float64(count) / time.Since(startTime).Seconds()
				loadingBar.Describe(color.BlueString(
					"Loading documents... (%.1f docs/sec)", rate))
			}
			time.Sleep(100 * time.Millisecond)
		}
	}()

	docs, err := docLoader.Load(ctx)
	close(done)
	loadingBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to load documents: %v", err)
	}
	color.Green("\n✓ Loaded %d documents\n", len(docs))

	processingBar := getProgressBar(len(docs), "Splitting documents...")
	processed := make([]models.ProcessedDocument, 0, len(docs))
	for _, doc := range docs {
		processedDocs, err := split.Split([]models.Document{doc})
		if err != nil {
			return fmt.Errorf("failed to split document %s: %v", doc.Source, err)
		}
		processed = append(processed, processedDocs...)
		processingBar.Add(1)
	}
	chunkCount := 0
	for _, doc := range processed {
		chunkCount += len(doc.Chunks)
	}
	color.Green("\n✓ Split into %d chunks\n", chunkCount)

	batchSize := a.config.Database.BatchSize

	batchEmbedder, err := embedder.NewEmbedder(a.runtime, a.embedder.Config,
		embeddings.WithBatchSize(batchSize))
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	embeddingBar := getProgressBar(len(processed), "Embedding chunks...")
	for i := range processed {
		vectors, err := batchEmbedder.EmbedDocuments(ctx, processed[i].Chunks)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %v", processed[i].Source, err)
		}
		processed[i].Embeddings = vectors
		embeddingBar.Add(1)
	}
	color.Green("\n✓ Embedded %d chunks\n", chunkCount)

	storageBar := getProgressBar(len(processed), "Storing...")
	for i := 0; i < len(processed); i += batchSize {
		end := i + batchSize
		if end > len(processed) {
			end = len(processed)
		}
		batch := processed[i:end]

		if err := vectorStore.Store(ctx, batch); err != nil {
			return fmt.Errorf("failed to store batch: %v", err)
		}
		storageBar.Add(len(batch))
	}
	color.Green("\n✓ Storage complete\n")

	return nil
}

func (a *app) runChat(ctx context.Context) error {
	chatEngine, err := llm.NewWithConfig(a.runtime, llm.ChatConfig{
		ModelID:     a.config.LLM.ModelID,
		MaxTokens:   a.config.LLM.MaxTokens,
		Temperature: a.config.LLM.Temperature,
		CiteSources: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	vectorStore, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	color.Cyan("\nChat with your knowledge base (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := scanner.Text()
		if strings.ToLower(query) == "exit" {
			break
		}

		querySpinner := getSpinner("Searching documentation...")
		docs, err := vectorStore.Search(ctx, query, 5)
		querySpinner.Finish()

		if err != nil {
			color.Red("Error querying documents: %v\n", err)
			continue
		}

		if a.config.UI.Streaming {
			stream, err := chatEngine.ChatStream(ctx, query, docs)
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}

			fmt.Print("\n")
			assistantPrompt("Assistant: ")

			for chunk := range stream {
				if strings.HasPrefix(chunk, "Error:") {
					color.Red("\n%s", chunk)
					break
				}
				fmt.Print(chunk)
			}
			fmt.Print("\n")
		} else {
			responseSpinner := getSpinner("Generating response...")
			response, err := chatEngine.Chat(ctx, query, docs)
			responseSpinner.Finish()

			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			assistantPrompt("\nAssistant: %s\n", response)
		}
	}

	return nil
}

func (a *app) runProfiles(ctx context.Context, modelID string) error {
	client := profiles.New(a.control)

	if modelID != "" {
		profile, err := client.Resolve(ctx, modelID)
		if err != nil {
			return err
		}

		color.Cyan("\n%s", profile.Name)
		fmt.Printf("  ID:      %s\n", profile.ID)
		fmt.Printf("  ARN:     %s\n", profile.ARN)
		fmt.Printf("  Status:  %s\n", profile.Status)
		fmt.Printf("  Regions: %s\n", strings.Join(profile.Regions(), ", "))
		return nil
	}

	listSpinner := getSpinner("Listing inference profiles...")
	list, err := client.List(ctx, profiles.TypeSystemDefined)
	listSpinner.Finish()
	if err != nil {
		return err
	}

	color.Green("\n✓ %d inference profiles\n\n", len(list))
	for _, profile := range list {
		fmt.Printf("%-60s %s\n", profile.ID, strings.Join(profile.Regions(), ","))
	}

	return nil
}

func (a *app) runInvoke(ctx context.Context, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("invoke requires -prompt")
	}

	invoker, err := invoke.NewWithConfig(a.runtime, invoke.InvokerConfig{
		ModelID:     a.config.LLM.ModelID,
		MaxTokens:   a.config.LLM.MaxTokens,
		Temperature: a.config.LLM.Temperature,
	})
	if err != nil {
		return err
	}

	// Same prompt through both runtime APIs, as a routing sanity check
	color.Blue("InvokeModel (%s):", a.config.LLM.ModelID)
	completion, err := invoker.InvokeModel(ctx, prompt)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", completion.Text)
	color.Yellow("  [%s, %d in / %d out tokens]\n",
		completion.StopReason, completion.Usage.InputTokens, completion.Usage.OutputTokens)

	color.Blue("\nConverse (%s):", a.config.LLM.ModelID)
	if a.config.UI.Streaming {
		stream, err := invoker.ConverseStream(ctx, prompt)
		if err != nil {
			return err
		}
		for chunk := range stream {
			fmt.Print(chunk)
		}
		fmt.Print("\n")
	} else {
		completion, err = invoker.Converse(ctx, prompt)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", completion.Text)
		color.Yellow("  [%s, %d in / %d out tokens]\n",
			completion.StopReason, completion.Usage.InputTokens, completion.Usage.OutputTokens)
	}

	return nil
}

func (a *app) runLogging(ctx context.Context, awsConfig aws.Config, action, accountID string) error {
	provisioner, err := provision.NewWithConfig(provision.Config{
		Region:          a.config.AWS.Region,
		AccountID:       accountID,
		LogGroupName:    a.config.Logging.LogGroupName,
		RoleName:        a.config.Logging.RoleName,
		RetentionDays:   a.config.Logging.RetentionDays,
		S3BucketName:    a.config.Logging.S3BucketName,
		S3KeyPrefix:     a.config.Logging.S3KeyPrefix,
		TextDelivery:    a.config.Logging.TextDelivery,
		ImageDelivery:   a.config.Logging.ImageDelivery,
		EmbedDelivery:   a.config.Logging.EmbedDelivery,
		MetricNamespace: a.config.Logging.MetricNamespace,
	},
		iam.NewFromConfig(awsConfig),
		cloudwatchlogs.NewFromConfig(awsConfig),
		s3.NewFromConfig(awsConfig),
		a.control,
	)
	if err != nil {
		return err
	}

	switch action {
	case "setup", "":
		roleArn, err := provisioner.Setup(ctx)
		if err != nil {
			return err
		}
		color.Green("✓ Invocation logging enabled")
		fmt.Printf("  log group: %s\n", a.config.Logging.LogGroupName)
		fmt.Printf("  role:      %s\n", roleArn)
		return nil

	case "status":
		status, err := provisioner.Status(ctx)
		if err != nil {
			return err
		}
		if status == nil {
			color.Yellow("Invocation logging is not configured")
			return nil
		}
		color.Green("Invocation logging is enabled")
		if status.CloudWatchConfig != nil && status.CloudWatchConfig.LogGroupName != nil {
			fmt.Printf("  log group: %s\n", *status.CloudWatchConfig.LogGroupName)
		}
		return nil

	case "disable":
		if err := provisioner.Disable(ctx); err != nil {
			return err
		}
		color.Green("✓ Invocation logging disabled")
		return nil

	default:
		return fmt.Errorf("unknown logging action %q (want setup, status or disable)", action)
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
