package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/Parth0603/CryptoPulse/config"
	"github.com/Parth0603/CryptoPulse/internal/commands"
	"github.com/Parth0603/CryptoPulse/internal/database"
	"github.com/Parth0603/CryptoPulse/internal/dialog"
	"github.com/Parth0603/CryptoPulse/internal/market"
	"github.com/Parth0603/CryptoPulse/internal/scheduler"
	"github.com/Parth0603/CryptoPulse/internal/telegram"
)

type BotMetrics struct {
	CommandsProcessed prometheus.Counter
	MessagesHandled   prometheus.Counter
	CallbacksHandled  prometheus.Counter
}

var metrics = NewBotMetrics()

func init() {
	config.InitConfig()
	setupLogging()
}

func NewBotMetrics() *BotMetrics {
	m := &BotMetrics{
		CommandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cryptopulse",
			Subsystem: "bot",
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cryptopulse",
			Subsystem: "bot",
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		CallbacksHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cryptopulse",
			Subsystem: "bot",
			Name:      "callbacks_handled",
			Help:      "The total number of handled callback queries",
		}),
	}

	prometheus.MustRegister(m.CommandsProcessed)
	prometheus.MustRegister(m.MessagesHandled)
	prometheus.MustRegister(m.CallbacksHandled)

	return m
}

func main() {
	store, err := database.Open(config.GetString("database_path"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	gateway := market.NewGateway(market.Config{
		BaseURL: config.GetString("market_api_url"),
	})

	states := dialog.NewStore()
	machine := dialog.NewMachine(states, gateway, store, store)
	cmds := commands.New(store, gateway)

	botConfig := telegram.BotConfig{
		Token:          config.GetString("telegram_bot_token"),
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
	}
	log.Debugf("bot config: %s", spew.Sdump(botConfig))

	bot, err := telegram.NewBot(botConfig, cmds, machine)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evaluator := scheduler.NewEvaluator(store, gateway, bot)
	go evaluator.Run(ctx)

	go handleUpdates(bot, bot.GetUpdatesChannel())

	go func() {
		if err := launchMetricsAndHealthServer(config.GetInt("metrics_port"), store); err != nil {
			log.Fatalf("Failed to start metrics and health server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
}

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting CryptoPulse bot...")
}

func handleUpdates(bot *telegram.Bot, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.CallbackQuery != nil {
			metrics.CallbacksHandled.Inc()
			handleSafely(func() { bot.HandleCallbackQuery(update.CallbackQuery) })
			continue
		}

		if update.Message == nil {
			log.Debug("Received non-message update")
			continue
		}

		metrics.MessagesHandled.Inc()
		if update.Message.IsCommand() {
			metrics.CommandsProcessed.Inc()
		}

		msg := update.Message
		handleSafely(func() { bot.HandleMessage(msg) })
	}
}

// handleSafely keeps a panicking handler from taking the whole bot down.
func handleSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()
	fn()
}

func healthCheckHandler(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alerts, err := store.CountAlerts()
		if err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		favorites, err := store.CountFavorites()
		if err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"alerts":    alerts,
			"favorites": favorites,
		})
	}
}

func launchMetricsAndHealthServer(port int, store *database.Store) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler(store))

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}
