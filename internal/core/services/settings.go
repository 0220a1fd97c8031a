package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyModelBackend   = "model.backend"
	keyModelName      = "model.name"
	keyModelBaseURL   = "model.base_url"
	keyModelVocabPath = "model.vocab_path"
	keyModelDims      = "model.dimensions"
	keyModelSeqLen    = "model.sequence_length"
	keyModelTimeout   = "model.timeout"
	keyModelRate      = "model.rate_per_second"

	keySearchLimit    = "search.limit"
	keySearchMinSim   = "search.min_similarity"
	keySearchMinRunes = "search.min_query_runes"
	keySearchAnswer   = "search.answer_limit"

	keyIngestQueue    = "ingest.queue_size"
	keyIngestInterval = "ingest.backfill_interval"
	keyIngestBatch    = "ingest.backfill_batch"

	keyStorageDataDir = "storage.data_dir"
)

// valueKind is how a settings key parses from the command line.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindDuration
	kindBackend
)

var settingKinds = map[string]valueKind{
	keyModelBackend:   kindBackend,
	keyModelName:      kindString,
	keyModelBaseURL:   kindString,
	keyModelVocabPath: kindString,
	keyModelDims:      kindInt,
	keyModelSeqLen:    kindInt,
	keyModelTimeout:   kindDuration,
	keyModelRate:      kindFloat,
	keySearchLimit:    kindInt,
	keySearchMinSim:   kindFloat,
	keySearchMinRunes: kindInt,
	keySearchAnswer:   kindInt,
	keyIngestQueue:    kindInt,
	keyIngestInterval: kindDuration,
	keyIngestBatch:    kindInt,
	keyStorageDataDir: kindString,
}

// settingKeys lists keys in display order.
var settingKeys = []string{
	keyModelBackend, keyModelName, keyModelBaseURL, keyModelVocabPath,
	keyModelDims, keyModelSeqLen, keyModelTimeout, keyModelRate,
	keySearchLimit, keySearchMinSim, keySearchMinRunes, keySearchAnswer,
	keyIngestQueue, keyIngestInterval, keyIngestBatch,
	keyStorageDataDir,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Missing or unparsable values
// fall back to their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Model: domain.ModelSettings{
			Backend:        s.getBackend(defaults.Model.Backend),
			Name:           s.getString(keyModelName, defaults.Model.Name),
			BaseURL:        s.configStore.GetString(keyModelBaseURL),
			VocabPath:      s.configStore.GetString(keyModelVocabPath),
			Dimensions:     s.getInt(keyModelDims, defaults.Model.Dimensions),
			SequenceLength: s.getInt(keyModelSeqLen, defaults.Model.SequenceLength),
			Timeout:        s.getDuration(keyModelTimeout, defaults.Model.Timeout),
			RatePerSecond:  s.getFloat(keyModelRate, defaults.Model.RatePerSecond),
		},
		Search: domain.SearchSettings{
			Limit:         s.getInt(keySearchLimit, defaults.Search.Limit),
			MinSimilarity: s.getFloat(keySearchMinSim, defaults.Search.MinSimilarity),
			MinQueryRunes: s.getInt(keySearchMinRunes, defaults.Search.MinQueryRunes),
			AnswerLimit:   s.getInt(keySearchAnswer, defaults.Search.AnswerLimit),
		},
		Ingest: domain.IngestSettings{
			QueueSize:        s.getInt(keyIngestQueue, defaults.Ingest.QueueSize),
			BackfillInterval: s.getDuration(keyIngestInterval, defaults.Ingest.BackfillInterval),
			BackfillBatch:    s.getInt(keyIngestBatch, defaults.Ingest.BackfillBatch),
		},
		Storage: domain.StorageSettings{
			DataDir: s.getString(keyStorageDataDir, defaults.Storage.DataDir),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{keyModelBackend, settings.Model.Backend.String()},
		{keyModelName, settings.Model.Name},
		{keyModelBaseURL, settings.Model.BaseURL},
		{keyModelVocabPath, settings.Model.VocabPath},
		{keyModelDims, settings.Model.Dimensions},
		{keyModelSeqLen, settings.Model.SequenceLength},
		{keyModelTimeout, settings.Model.Timeout.String()},
		{keyModelRate, settings.Model.RatePerSecond},
		{keySearchLimit, settings.Search.Limit},
		{keySearchMinSim, settings.Search.MinSimilarity},
		{keySearchMinRunes, settings.Search.MinQueryRunes},
		{keySearchAnswer, settings.Search.AnswerLimit},
		{keyIngestQueue, settings.Ingest.QueueSize},
		{keyIngestInterval, settings.Ingest.BackfillInterval.String()},
		{keyIngestBatch, settings.Ingest.BackfillBatch},
		{keyStorageDataDir, settings.Storage.DataDir},
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set parses value for key and stores it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrValidation, key)
	}

	parsed, err := parseSetting(kind, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrValidation, key, err)
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func parseSetting(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		// Stored as text so the TOML file stays readable.
		return d.String(), nil
	case kindBackend:
		if !domain.ModelBackend(value).IsValid() {
			return nil, fmt.Errorf("unknown backend %q", value)
		}
		return value, nil
	default:
		return value, nil
	}
}

// Keys returns every settings key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingKeys))
	copy(keys, settingKeys)
	return keys
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getBackend(defaultVal domain.ModelBackend) domain.ModelBackend {
	val := s.configStore.GetString(keyModelBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.ModelBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
