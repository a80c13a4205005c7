package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doseedge/config"
	"doseedge/engine"
	"doseedge/messaging"
	"doseedge/store"
	"doseedge/www"
)

const version = "dev"

func main() {
	configPath := flag.String("config", "doseedge.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *port > 0 {
		cfg.Web.Port = *port
	}

	// Open database
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create and start engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		LogFunc:    log.Printf,
		Debug:      *debug,
	})
	eng.Start()
	defer eng.Stop()

	stationID := cfg.StationID()

	// Every confirmed dose lands in the outbox regardless of broker state;
	// the drainer delivers when the connection is up.
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		dosed := evt.Payload.(engine.MaterialDosedEvent)
		if dosed.Data == nil {
			return
		}
		report := messaging.DoseReport{
			RecipeMaterialID: dosed.Data.RecipeMaterialID,
			MaterialID:       dosed.Data.MaterialID,
			MaterialName:     dosed.Data.MaterialName,
			SetPoint:         dosed.Data.SetPoint,
			Actual:           dosed.Data.Actual,
			MarginG:          dosed.Data.Margin,
			BatchComplete:    dosed.ResetDone,
		}
		if dosed.Material != nil {
			report.RecipeID = dosed.Material.RecipeID
			report.RecipeName = dosed.Material.RecipeName
		}
		msgType := messaging.MsgDoseReport
		kind := store.ReportDose
		if dosed.ResetDone {
			msgType = messaging.MsgBatchReport
			kind = store.ReportBatch
		}
		env := messaging.NewEnvelope(msgType, stationID, report)
		data, err := env.Encode()
		if err != nil {
			log.Printf("encode dose report: %v", err)
			return
		}
		if _, err := db.EnqueueReport(cfg.Messaging.ReportsTopic, data, kind); err != nil {
			log.Printf("enqueue dose report: %v", err)
		}
	}, engine.EventMaterialDosed)

	// Set up messaging
	if cfg.Messaging.MQTT.ClientID == "" {
		cfg.Messaging.MQTT.ClientID = stationID
	}
	msgClient := messaging.NewClient(&cfg.Messaging)
	defer msgClient.Close()
	if err := msgClient.Connect(); err != nil {
		log.Printf("messaging connect: %v (reports queue in outbox)", err)
	} else {
		// Outbox drainer
		drainer := messaging.NewOutboxDrainer(db, msgClient, &cfg.Messaging)
		drainer.Start()
		defer drainer.Stop()

		// Heartbeater (registration + periodic heartbeat)
		hb := messaging.NewHeartbeater(msgClient, stationID, version, cfg.LineID, cfg.Messaging.ReportsTopic)
		hb.Start()
		defer hb.Stop()

		// Dose reporter (accumulates doses, sends periodic summaries)
		reporter := messaging.NewDoseReporter(msgClient, stationID, cfg.Messaging.ReportsTopic)
		eng.Events.SubscribeTypes(func(evt engine.Event) {
			dosed := evt.Payload.(engine.MaterialDosedEvent)
			if dosed.Data != nil {
				reporter.RecordDose(dosed.Data.MaterialID, dosed.Data.MaterialName, dosed.Data.Actual)
			}
		}, engine.EventMaterialDosed)
		reporter.Start()
		defer reporter.Stop()
	}

	// Set up HTTP server
	router, stopWeb := www.NewRouter(eng)
	defer stopWeb()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("DoseEdge listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	// Stop SSE event hub first so long-lived connections close
	stopWeb()

	// Graceful HTTP shutdown with 10s deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}
