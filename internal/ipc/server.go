package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"log/slog"

	"reel/internal/api"
	"reel/internal/daemon"
	"reel/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Reel", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun reel daemon-stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Ping(_ PingRequest, _ *PingResponse) error {
	return nil
}

func (s *service) Start(req StartRequest, resp *StartResponse) error {
	s.log().Debug("capture start requested", logging.String(logging.FieldTarget, req.Target))
	token, err := s.daemon.StartCapture(s.ctx, req.Target)
	if err != nil {
		return err
	}
	resp.Token = FromCaptureToken(token)
	s.log().Info("capture stream resolved via IPC",
		logging.String(logging.FieldEventType, "capture_resolve"),
		logging.String(logging.FieldTarget, token.Target))
	return nil
}

func (s *service) StartWithToken(req StartWithTokenRequest, _ *StartWithTokenResponse) error {
	token := req.Token.ToCaptureToken()
	if strings.TrimSpace(token.ID) == "" {
		return errors.New("start with token requires a token id")
	}
	if err := s.daemon.StartCaptureWithToken(s.ctx, token); err != nil {
		return err
	}
	s.log().Info("capture started via IPC",
		logging.String(logging.FieldEventType, "capture_start"),
		logging.String(logging.FieldTarget, token.Target))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("capture stop requested")
	result, err := s.daemon.StopCapture(s.ctx)
	if err != nil {
		return err
	}
	resp.Stopped = result.RecordingID != ""
	resp.RecordingID = result.RecordingID
	resp.DurationSeconds = result.DurationSeconds
	resp.Warning = result.Warning
	if resp.Stopped {
		s.log().Info("capture stopped via IPC",
			logging.String(logging.FieldEventType, "capture_stop"),
			logging.String(logging.FieldRecordingID, result.RecordingID))
	}
	return nil
}

func (s *service) State(_ StateRequest, resp *StateResponse) error {
	state := api.FromStateSnapshot(s.daemon.CaptureState(s.ctx))
	resp.Capturing = state.Capturing
	resp.HasBufferedAudio = state.HasBufferedAudio
	resp.Target = state.Target
	resp.StartedAt = state.StartedAt
	resp.ElapsedSeconds = state.ElapsedSeconds
	return nil
}

func (s *service) Clear(_ ClearRequest, _ *ClearResponse) error {
	s.log().Debug("capture clear requested")
	if err := s.daemon.ClearCapture(s.ctx); err != nil {
		return err
	}
	s.log().Info("capture session cleared via IPC",
		logging.String(logging.FieldEventType, "capture_clear"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Version = status.Version
	resp.StartedAt = api.FormatTime(status.StartedAt)
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.Capture = api.FromStateSnapshot(status.Capture)
	resp.Store = StoreSummary{
		Recordings: status.Store.Recordings,
		TotalBytes: status.Store.TotalBytes,
	}
	resp.Dependencies = api.FromDependencyStatuses(status.Dependencies)
	return nil
}

func (s *service) RecordingsList(_ RecordingsListRequest, resp *RecordingsListResponse) error {
	recs, err := s.daemon.ListRecordings(s.ctx)
	if err != nil {
		return err
	}
	resp.Items = api.FromRecordings(recs)
	return nil
}

func (s *service) RecordingsDescribe(req RecordingsDescribeRequest, resp *RecordingsDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("describe requires a recording id")
	}
	rec, err := s.daemon.GetRecording(s.ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("recording %s not found", id)
	}
	resp.Item = api.FromRecording(rec)
	return nil
}

func (s *service) RecordingsRemove(req RecordingsRemoveRequest, resp *RecordingsRemoveResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("remove requires at least one recording id")
	}
	s.log().Debug("recordings remove requested", logging.Int("recording_count", len(req.IDs)))
	removed, err := s.daemon.RemoveRecordings(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("recordings removed",
		logging.String(logging.FieldEventType, "recordings_remove"),
		logging.Int("removed_count", removed))
	return nil
}

func (s *service) RecordingsRename(req RecordingsRenameRequest, resp *RecordingsRenameResponse) error {
	id := strings.TrimSpace(req.ID)
	name := strings.TrimSpace(req.Name)
	if id == "" {
		return errors.New("rename requires a recording id")
	}
	if name == "" {
		return errors.New("rename requires a non-empty name")
	}
	renamed, err := s.daemon.RenameRecording(s.ctx, id, name)
	if err != nil {
		return err
	}
	resp.Renamed = renamed
	if renamed {
		s.log().Info("recording renamed",
			logging.String(logging.FieldEventType, "recordings_rename"),
			logging.String(logging.FieldRecordingID, id))
	}
	return nil
}
