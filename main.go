package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chat-service/cache"
	"chat-service/chat"
	"chat-service/config"
	"chat-service/controller"
	"chat-service/database"
	"chat-service/directory"
	"chat-service/event"
	"chat-service/event/listener"
	"chat-service/router"
	"chat-service/socketio"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	log.SetPrefix("chat-service: ")

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "chat-service",
	})

	rest.Use(cors.New())

	database.RedisConnect()
	database.PostgresConnect()

	event.RabbitMQConnect([]string{
		// Connect to queues
		"chat",
		"notification",
	})

	engine := chat.NewEngine(
		database.Postgres,
		cache.New(database.Redis[0]),
		directory.New(database.Postgres),
		socketio.RoomBroadcaster{},
	)
	controller.SetEngine(engine)
	listener.SetEngine(engine)

	// Run entity-creation hook listener
	go listener.EntityHooks()

	// Subscribe listener channel to "chat" events
	event.RabbitMQSubscribe([]event.RabbitMQSubscribeListener{
		{
			Queue:   "chat",
			Channel: listener.EntityChannel,
		},
	})

	// Init event logs
	event.Init()

	socket := socketio.Init(rest)

	router.Rest(rest)
	router.Socket(socket, engine)

	go rest.Listen(fmt.Sprintf(":%s", config.Config("SERVER_PORT")))

	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	socket.Close(nil)
	event.RabbitMQChannel.Close()
	event.RabbitMQConnection.Close()
	event.InLogFile.Close()
	event.OutLogFile.Close()
	os.Exit(0)
}
