package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"go-rooms/backend/config"
	"go-rooms/backend/fanout"
	"go-rooms/backend/handlers"
	"go-rooms/backend/ledger"
	"go-rooms/backend/middleware"
	"go-rooms/backend/notify"
	"go-rooms/backend/preview"
	"go-rooms/backend/registry"
	"go-rooms/backend/store"
	"go-rooms/backend/store/memstore"
	"go-rooms/backend/store/mongostore"
	"go-rooms/backend/websocket"
)

func main() {
	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	switch cfg.Store {
	case "memory":
		log.Println("Using in-memory store (data is lost on restart)")
		st = memstore.New()
	default:
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		ms, err := mongostore.Connect(connectCtx, cfg.MongoDBURI, cfg.DBName)
		connectCancel()
		if err != nil {
			log.Fatalf("Could not connect to MongoDB: %v", err)
		}
		defer func() {
			disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer disconnectCancel()
			ms.Disconnect(disconnectCtx)
		}()
		st = ms
	}

	hub := websocket.NewHub()
	go hub.Run()

	// With Redis configured, events go through pub/sub so every node's hub
	// sees them; otherwise they are handed straight to the local hub.
	var channel fanout.Channel
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Could not connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		defer rdb.Close()
		channel = fanout.NewRedisChannel(rdb)
		go fanout.NewSubscriber(rdb, hub).Run(ctx)
		log.Printf("Fan-out via Redis pub/sub at %s", cfg.RedisAddr)
	} else {
		channel = fanout.NewBus(hub)
	}

	projector := preview.New(st)
	rooms, err := registry.New(st, channel, projector, notify.LogNotifier{})
	if err != nil {
		log.Fatalf("Could not build room registry: %v", err)
	}
	messages, err := ledger.New(st, channel, projector, rooms)
	if err != nil {
		log.Fatalf("Could not build message ledger: %v", err)
	}

	authHandler := &handlers.AuthHandler{Store: st, JWTSecret: cfg.JWTSecret}
	roomHandler := &handlers.RoomHandler{Registry: rooms}
	messageHandler := &handlers.MessageHandler{Ledger: messages}

	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Backend is running!")
	}).Methods("GET")

	router.HandleFunc("/register", authHandler.Register).Methods("POST")
	router.HandleFunc("/login", authHandler.Login).Methods("POST")

	router.HandleFunc("/ws", websocket.ServeWS(hub, cfg.JWTSecret)).Methods("GET")

	// Everything below requires a valid token.
	auth := router.NewRoute().Subrouter()
	auth.Use(middleware.JWT(cfg.JWTSecret))

	auth.HandleFunc("/rooms", roomHandler.CreateRoom).Methods("POST")
	auth.HandleFunc("/rooms", roomHandler.ListMyRooms).Methods("GET")
	auth.HandleFunc("/rooms/join", roomHandler.JoinRoom).Methods("POST")
	auth.HandleFunc("/rooms/leave", roomHandler.LeaveRoom).Methods("POST")
	auth.HandleFunc("/rooms/delete", roomHandler.DeleteRoom).Methods("POST")
	auth.HandleFunc("/rooms/{roomId}/statuses", roomHandler.RoomStatuses).Methods("GET")
	auth.HandleFunc("/rooms/status", roomHandler.UpdateStatus).Methods("POST")

	auth.HandleFunc("/messages", messageHandler.SendMessage).Methods("POST")
	auth.HandleFunc("/messages/read", messageHandler.MarkRead).Methods("POST")
	auth.HandleFunc("/messages/{roomId}", messageHandler.GetMessages).Methods("GET")
	auth.HandleFunc("/messages/{messageId}", messageHandler.EditMessage).Methods("PATCH")
	auth.HandleFunc("/messages/{messageId}", messageHandler.DeleteMessage).Methods("DELETE")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %s, shutting down server...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully.")
}
