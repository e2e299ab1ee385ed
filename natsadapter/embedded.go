package natsadapter

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// EmbeddedConfig configures RunEmbedded.
type EmbeddedConfig struct {
	ServerName string
	// InProcess skips the TCP listener; clients connect through the
	// server's in-process pipe.
	InProcess bool
	Host      string
	// Port -1 picks a random port.
	Port   int
	Logger *slog.Logger
}

// RunEmbedded starts a NATS server inside this process and returns a
// connection to it. The caller shuts both down: nc.Close then ns.Shutdown.
func RunEmbedded(cfg EmbeddedConfig) (*nats.Conn, *server.Server, error) {
	if cfg.ServerName == "" {
		cfg.ServerName = "uapi_embedded"
	}
	ns, err := server.NewServer(&server.Options{
		ServerName: cfg.ServerName,
		DontListen: cfg.InProcess,
		Host:       cfg.Host,
		Port:       cfg.Port,
		NoSigs:     true,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Logger != nil {
		ns.SetLogger(&serverLogger{logger: cfg.Logger}, false, false)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, nil, errors.New("natsadapter: embedded server not ready")
	}

	var opts []nats.Option
	if cfg.InProcess {
		opts = append(opts, nats.InProcessServer(ns))
	}
	nc, err := nats.Connect(ns.ClientURL(), opts...)
	if err != nil {
		ns.Shutdown()
		return nil, nil, err
	}
	return nc, ns, nil
}

type serverLogger struct {
	logger *slog.Logger
}

func (l *serverLogger) Noticef(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Fatalf(format string, v ...any) {
	l.logger.Error("nats fatal: " + fmt.Sprintf(format, v...))
}

func (l *serverLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *serverLogger) Tracef(format string, v ...any) {
	l.logger.Debug("nats trace: " + fmt.Sprintf(format, v...))
}
