package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"reel/internal/audio"
	"reel/internal/config"
	"reel/internal/fileutil"
	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/services/ffmpeg"
	"reel/internal/store"
	"reel/internal/textutil"
	"reel/internal/transcode"
)

// BuildEngine constructs the conversion engine from config: ffmpeg-backed
// mp3/ogg encoding with the configured bitrates and normalize ceiling.
func BuildEngine(cfg *config.Config, logger *slog.Logger) (*transcode.Engine, error) {
	client, err := ffmpeg.New(cfg.FFmpegBinary())
	if err != nil {
		return nil, err
	}
	return transcode.NewEngine(client, transcode.Options{
		MP3BitrateKbps:   cfg.Transcode.MP3BitrateKbps,
		OggBitrateKbps:   cfg.Transcode.OggBitrateKbps,
		NormalizeCeiling: cfg.Transcode.NormalizeCeiling,
	}, logger), nil
}

// ExportRecordingRequest describes one store-to-file conversion.
type ExportRecordingRequest struct {
	Config *config.Config
	Logger *slog.Logger
	// Store is optional; when nil the store is opened read-only from the
	// config for the duration of the call.
	Store *store.Store
	// Engine is optional; when nil one is built from the config.
	Engine  *transcode.Engine
	ID      string
	Convert transcode.Request
	// OutputPath names the exact destination. When empty the name derives
	// from the recording name and target container under OutputDir.
	OutputPath string
	OutputDir  string
	Overwrite  bool
}

// ExportRecordingResult reports where the converted audio landed.
type ExportRecordingResult struct {
	RecordingID     string
	Name            string
	OutputPath      string
	Container       string
	SizeBytes       int64
	DurationSeconds float64
	Altered         bool
}

// ExportRecording converts one stored payload and writes it to disk.
func ExportRecording(ctx context.Context, req ExportRecordingRequest) (ExportRecordingResult, error) {
	cfg := req.Config
	if cfg == nil {
		return ExportRecordingResult{}, fmt.Errorf("configuration is required")
	}
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return ExportRecordingResult{}, fmt.Errorf("recording id is required")
	}

	st, closeStore, err := openStoreIfNeeded(req.Store, cfg)
	if err != nil {
		return ExportRecordingResult{}, err
	}
	defer closeStore()

	rec, payload, err := loadRecording(ctx, st, id)
	if err != nil {
		return ExportRecordingResult{}, err
	}

	engine := req.Engine
	if engine == nil {
		engine, err = BuildEngine(cfg, logger)
		if err != nil {
			return ExportRecordingResult{}, err
		}
	}
	result, err := engine.Convert(ctx, payload, req.Convert)
	if err != nil {
		return ExportRecordingResult{}, err
	}

	outPath, err := resolveDestination(req.OutputPath, req.OutputDir, rec, result.Container)
	if err != nil {
		return ExportRecordingResult{}, err
	}
	if !req.Overwrite {
		outPath = fileutil.UniquePath(outPath)
	}
	if err := fileutil.WriteFileAtomic(outPath, result.Data, 0o644); err != nil {
		return ExportRecordingResult{}, fmt.Errorf("write export: %w", err)
	}

	logger.Info("recording exported",
		logging.String(logging.FieldEventType, "recording_exported"),
		logging.String(logging.FieldRecordingID, rec.ID),
		logging.String(logging.FieldContainer, result.Container),
		logging.String("path", outPath),
		logging.Int("size_bytes", len(result.Data)),
	)
	return ExportRecordingResult{
		RecordingID:     rec.ID,
		Name:            rec.Name,
		OutputPath:      outPath,
		Container:       result.Container,
		SizeBytes:       int64(len(result.Data)),
		DurationSeconds: result.DurationSeconds,
		Altered:         result.Altered,
	}, nil
}

// ExportAllRequest converts every recording in the store with one shared
// conversion request.
type ExportAllRequest struct {
	Config      *config.Config
	Logger      *slog.Logger
	Store       *store.Store
	OutputDir   string
	Convert     transcode.Request
	Concurrency int
	Overwrite   bool
}

// ExportAllResult lists per-recording outcomes in store listing order.
type ExportAllResult struct {
	Exported []ExportRecordingResult
}

// ExportAllRecordings runs ExportRecording for every stored recording with
// bounded concurrency. The first failure cancels the remaining exports.
func ExportAllRecordings(ctx context.Context, req ExportAllRequest) (ExportAllResult, error) {
	cfg := req.Config
	if cfg == nil {
		return ExportAllResult{}, fmt.Errorf("configuration is required")
	}
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	st, closeStore, err := openStoreIfNeeded(req.Store, cfg)
	if err != nil {
		return ExportAllResult{}, err
	}
	defer closeStore()

	recs, err := st.List(ctx)
	if err != nil {
		return ExportAllResult{}, err
	}
	if len(recs) == 0 {
		return ExportAllResult{}, nil
	}

	engine, err := BuildEngine(cfg, logger)
	if err != nil {
		return ExportAllResult{}, err
	}

	// Destinations are reserved up front so concurrent exports cannot race
	// the uniqueness probe into the same file.
	paths := make([]string, len(recs))
	taken := make(map[string]struct{}, len(recs))
	for i, rec := range recs {
		predicted := req.Convert.Container
		if predicted == "" {
			predicted = rec.Container
		}
		candidate, err := resolveDestination("", req.OutputDir, rec, predicted)
		if err != nil {
			return ExportAllResult{}, err
		}
		paths[i] = reservePath(taken, candidate, req.Overwrite)
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([]ExportRecordingResult, len(recs))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			res, err := ExportRecording(groupCtx, ExportRecordingRequest{
				Config:     cfg,
				Logger:     logger,
				Store:      st,
				Engine:     engine,
				ID:         rec.ID,
				Convert:    req.Convert,
				OutputPath: paths[i],
				Overwrite:  true,
			})
			if err != nil {
				return fmt.Errorf("export %s: %w", rec.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExportAllResult{}, err
	}
	return ExportAllResult{Exported: results}, nil
}

// CropRecordingRequest trims a stored recording to a window and writes the
// result as WAV at the requested bit depth.
type CropRecordingRequest struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        *store.Store
	Engine       *transcode.Engine
	ID           string
	StartSeconds float64
	EndSeconds   float64
	BitDepth     int
	OutputPath   string
	OutputDir    string
	Overwrite    bool
}

// CropRecording extracts a window of a stored recording to a WAV file.
// An EndSeconds of zero means through the end of the recording.
func CropRecording(ctx context.Context, req CropRecordingRequest) (ExportRecordingResult, error) {
	cfg := req.Config
	if cfg == nil {
		return ExportRecordingResult{}, fmt.Errorf("configuration is required")
	}
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return ExportRecordingResult{}, fmt.Errorf("recording id is required")
	}
	if req.StartSeconds < 0 {
		return ExportRecordingResult{}, fmt.Errorf("%w: crop start %.3f before zero", services.ErrValidation, req.StartSeconds)
	}
	if req.EndSeconds > 0 && req.EndSeconds <= req.StartSeconds {
		return ExportRecordingResult{}, fmt.Errorf("%w: crop end %.3f not after start %.3f", services.ErrValidation, req.EndSeconds, req.StartSeconds)
	}

	st, closeStore, err := openStoreIfNeeded(req.Store, cfg)
	if err != nil {
		return ExportRecordingResult{}, err
	}
	defer closeStore()

	rec, payload, err := loadRecording(ctx, st, id)
	if err != nil {
		return ExportRecordingResult{}, err
	}

	engine := req.Engine
	if engine == nil {
		engine, err = BuildEngine(cfg, logger)
		if err != nil {
			return ExportRecordingResult{}, err
		}
	}
	out, err := engine.CropBytes(ctx, payload, req.StartSeconds, req.EndSeconds, req.BitDepth)
	if err != nil {
		return ExportRecordingResult{}, err
	}
	decoded, err := audio.DecodeWAV(out)
	if err != nil {
		return ExportRecordingResult{}, err
	}

	outPath := strings.TrimSpace(req.OutputPath)
	if outPath == "" {
		cropped := *rec
		base := textutil.SanitizeFileName(rec.Name)
		if base == "" {
			base = rec.ID
		}
		cropped.Name = base + "-cropped"
		outPath, err = resolveDestination("", req.OutputDir, &cropped, transcode.ContainerWAV)
	} else {
		outPath, err = config.ExpandPath(outPath)
	}
	if err != nil {
		return ExportRecordingResult{}, err
	}
	if !req.Overwrite {
		outPath = fileutil.UniquePath(outPath)
	}
	if err := fileutil.WriteFileAtomic(outPath, out, 0o644); err != nil {
		return ExportRecordingResult{}, fmt.Errorf("write crop: %w", err)
	}

	logger.Info("recording cropped",
		logging.String(logging.FieldEventType, "recording_cropped"),
		logging.String(logging.FieldRecordingID, rec.ID),
		logging.Float64("start_seconds", req.StartSeconds),
		logging.Float64("end_seconds", req.EndSeconds),
		logging.String("path", outPath),
	)
	return ExportRecordingResult{
		RecordingID:     rec.ID,
		Name:            rec.Name,
		OutputPath:      outPath,
		Container:       transcode.ContainerWAV,
		SizeBytes:       int64(len(out)),
		DurationSeconds: decoded.Duration(),
		Altered:         true,
	}, nil
}

func openStoreIfNeeded(st *store.Store, cfg *config.Config) (*store.Store, func(), error) {
	if st != nil {
		return st, func() {}, nil
	}
	opened, err := store.OpenReadOnly(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open recordings store: %w", err)
	}
	return opened, func() { _ = opened.Close() }, nil
}

func loadRecording(ctx context.Context, st *store.Store, id string) (*store.Recording, []byte, error) {
	rec, err := st.GetRecording(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: recording %q", services.ErrNotFound, id)
	}
	payload, err := st.ReadPayload(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, payload, nil
}

func resolveDestination(explicit, dir string, rec *store.Recording, container string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return config.ExpandPath(explicit)
	}
	base := textutil.SanitizeFileName(rec.Name)
	if base == "" {
		base = rec.ID
	}
	if dir = strings.TrimSpace(dir); dir == "" {
		dir = "."
	}
	expandedDir, err := config.ExpandPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(expandedDir, base+"."+container), nil
}

// reservePath returns a destination not yet claimed this run, probing the
// filesystem as well unless overwriting is allowed.
func reservePath(taken map[string]struct{}, path string, overwrite bool) string {
	free := func(candidate string) bool {
		if _, clash := taken[candidate]; clash {
			return false
		}
		if overwrite {
			return true
		}
		_, err := os.Stat(candidate)
		return os.IsNotExist(err)
	}
	if free(path) {
		taken[path] = struct{}{}
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if free(candidate) {
			taken[candidate] = struct{}{}
			return candidate
		}
	}
}
