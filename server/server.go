package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/gorilla/websocket"

	"github.com/ahagan/strata/pkg/awscfg"
	cfgPkg "github.com/ahagan/strata/pkg/config"
	"github.com/ahagan/strata/pkg/embedder"
	"github.com/ahagan/strata/pkg/llm"
	"github.com/ahagan/strata/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type WSServer struct {
	config      *cfgPkg.Config
	chatEngine  *llm.ChatEngine
	vectorStore *store.VectorStore
}

func NewWSServer(ctx context.Context, config *cfgPkg.Config) (*WSServer, error) {
	awsConfig, err := awscfg.Load(ctx, awscfg.Options{
		Region:          config.AWS.Region,
		Profile:         config.AWS.Profile,
		AccessKeyID:     config.AWS.AccessKeyID,
		SecretAccessKey: config.AWS.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}

	runtime := bedrockruntime.NewFromConfig(awsConfig)

	chatEngine, err := llm.NewWithConfig(runtime, llm.ChatConfig{
		ModelID:     config.LLM.ModelID,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
		CiteSources: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	emb := embedder.NewWithConfig(runtime, embedder.EmbedderConfig{
		ModelID:    config.Embedding.ModelID,
		Dimensions: config.Embedding.Dimensions,
		Normalize:  config.Embedding.Normalize,
	})

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: config.Database.URL,
		TableName:  config.Database.TableName,
		VectorDim:  config.Database.VectorDim,
		BatchSize:  config.Database.BatchSize,
	}, emb)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %v", err)
	}

	return &WSServer{
		config:      config,
		chatEngine:  chatEngine,
		vectorStore: vectorStore,
	}, nil
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("Error reading message: %v", err)
			break
		}

		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	query := msg.Content

	docs, err := s.vectorStore.Search(ctx, query, 5)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error querying documents: %v", err))
		return
	}

	if s.config.UI.Streaming {
		stream, err := s.chatEngine.ChatStream(ctx, query, docs)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
			return
		}

		for chunk := range stream {
			if strings.HasPrefix(chunk, "Error:") {
				s.sendMessage(conn, "error", chunk)
				break
			}
			s.sendMessage(conn, "stream", chunk)
		}
		s.sendMessage(conn, "done", "")
	} else {
		response, err := s.chatEngine.Chat(ctx, query, docs)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
			return
		}
		s.sendMessage(conn, "response", response)
	}
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType string, content string) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		os.Exit(1)
	}

	server, err := NewWSServer(context.Background(), config)
	if err != nil {
		log.Fatal(err)
	}
	defer server.vectorStore.Close()

	http.HandleFunc("/ws", server.handleWebSocket)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting WebSocket server on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
