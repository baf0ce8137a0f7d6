package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	flags "github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"

	"github.com/meeting-voice-lab/agent"
	"github.com/meeting-voice-lab/internal/audit"
	"github.com/meeting-voice-lab/internal/config"
	"github.com/meeting-voice-lab/internal/ingress"
	"github.com/meeting-voice-lab/internal/logging"
	"github.com/meeting-voice-lab/internal/mcp"
	"github.com/meeting-voice-lab/internal/orchestrator"
	"github.com/meeting-voice-lab/internal/session"
	"github.com/meeting-voice-lab/internal/speech"
	"github.com/meeting-voice-lab/internal/transport"
)

type options struct {
	Config     string `short:"c" long:"config" description:"path to YAML config file"`
	ListenAddr string `short:"l" long:"listen" description:"ingress listen address override"`
	LogLevel   string `long:"log-level" description:"log level override (debug|info|warn|error)"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if opts.LogLevel != "" {
		os.Setenv("LOG_LEVEL", opts.LogLevel)
	}

	sugar := logging.Init()
	defer func() { _ = logging.Sync() }()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		logging.FatalExitf("config load failed", "err", err)
	}
	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}

	storeOpts := []session.Option{session.WithInactivityTimeout(cfg.InactivityTimeout)}
	var redisClient *redis.Client
	if cfg.SessionBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		storeOpts = append(storeOpts, session.WithPersistence(
			session.NewRedisPersistence(redisClient, cfg.RedisTTL)))
		sugar.Infow("session persistence enabled", "backend", "redis", "addr", cfg.RedisAddr)
	}
	store := session.NewStore(storeOpts...)

	tts := speech.NewTTSClient(cfg.TTSURL, cfg.TTSAuthToken, cfg.TTSTimeout)

	ag := agent.NewClient(cfg.AgentURL, cfg.AgentAPIKey, cfg.AgentModel, cfg.AgentFallback)
	var mcpClient *mcp.ClientWrapper
	if cfg.MCPServerURL != "" {
		mcpClient = mcp.NewClientWrapper("meeting-voice-bot", "0.1.0")
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mcpClient.ConnectWebSocket(connectCtx, cfg.MCPServerURL); err != nil {
			sugar.Warnw("mcp connect failed, continuing without tools", "err", err)
			mcpClient = nil
		} else {
			ag.Tools = mcpClient
		}
		cancel()
	}

	auditLogger := audit.NewLogger(cfg.AuditWebhookURL, cfg.AuditSecret, cfg.AuditTimeout)

	var (
		sink speech.Transport
		dg   *discordgo.Session
		vc   *discordgo.VoiceConnection
	)
	switch cfg.AudioTransport {
	case "discord":
		dg, err = discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			logging.FatalExitf("discord session failed", "err", err)
		}
		if err = dg.Open(); err != nil {
			logging.FatalExitf("discord open failed", "err", err)
		}
		vc, err = dg.ChannelVoiceJoin(cfg.GuildID, cfg.VoiceChannelID, false, true)
		if err != nil {
			logging.FatalExitf("voice join failed", "err", err,
				"guild", cfg.GuildID, "channel", cfg.VoiceChannelID)
		}
		dt, derr := transport.NewDiscordTransport(vc)
		if derr != nil {
			logging.FatalExitf("discord transport failed", "err", derr)
		}
		sink = dt
		sugar.Infow("voice joined", "guild", cfg.GuildID, "channel", cfg.VoiceChannelID)
	default:
		sink = transport.NewLogTransport()
	}

	orch := orchestrator.New(cfg, store, tts, orchestrator.SingleTransport(sink), ag, auditLogger)
	srv := ingress.NewServer(cfg.ListenAddr, orch)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logging.FatalExitf("ingress server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	sugar.Infow("shutdown signal received, closing resources")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("ingress shutdown error", "err", err)
	}
	orch.Close()
	auditLogger.Close()
	if mcpClient != nil {
		if err := mcpClient.Close(); err != nil {
			sugar.Warnw("mcp close error", "err", err)
		}
	}
	if vc != nil {
		if err := vc.Disconnect(); err != nil {
			sugar.Warnw("voice disconnect error", "err", err)
		}
	}
	if dg != nil {
		if err := dg.Close(); err != nil {
			sugar.Warnw("discord session close error", "err", err)
		}
	}
	if err := store.Close(); err != nil {
		sugar.Warnw("session store close error", "err", err)
	}
	sugar.Infow("shutdown complete")
}
