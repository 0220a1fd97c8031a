package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alazoor/Mimachat/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in ~/.mima/config.toml.

Run without a subcommand to show every setting.`,
	Annotations: map[string]string{annotationNoServices: "true"},
	Args:        cobra.NoArgs,
	RunE:        runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:         "get [key]",
	Short:       "Print one setting",
	Annotations: map[string]string{annotationNoServices: "true"},
	Args:        cobra.ExactArgs(1),
	RunE:        runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Change one setting by its dotted key, for example:

  mima settings set search.min_similarity 0.7
  mima settings set model.backend tfserving
  mima settings set model.base_url http://localhost:8501`,
	Annotations: map[string]string{annotationNoServices: "true"},
	Args:        cobra.ExactArgs(2),
	RunE:        runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Restore default settings",
	Annotations: map[string]string{annotationNoServices: "true"},
	Args:        cobra.NoArgs,
	RunE:        runSettingsReset,
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, key := range settingsService.Keys() {
		cmd.Printf("%-26s %s\n", key, settingValue(settings, key))
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("\nWarning: %v\n", err)
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	value := settingValue(settings, args[0])
	if value == "" && !knownKey(args[0]) {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrValidation, args[0])
	}
	cmd.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runSettingsReset(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	defaults := settingsService.GetDefaults()
	if err := settingsService.Save(&defaults); err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	cmd.Println("Settings restored to defaults.")
	return nil
}

func knownKey(key string) bool {
	for _, k := range settingsService.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func settingValue(s *domain.AppSettings, key string) string {
	switch key {
	case "model.backend":
		return s.Model.Backend.String()
	case "model.name":
		return s.Model.Name
	case "model.base_url":
		return s.Model.BaseURL
	case "model.vocab_path":
		return s.Model.VocabPath
	case "model.dimensions":
		return strconv.Itoa(s.Model.Dimensions)
	case "model.sequence_length":
		return strconv.Itoa(s.Model.SequenceLength)
	case "model.timeout":
		return s.Model.Timeout.String()
	case "model.rate_per_second":
		return strconv.FormatFloat(s.Model.RatePerSecond, 'g', -1, 64)
	case "search.limit":
		return strconv.Itoa(s.Search.Limit)
	case "search.min_similarity":
		return strconv.FormatFloat(s.Search.MinSimilarity, 'g', -1, 64)
	case "search.min_query_runes":
		return strconv.Itoa(s.Search.MinQueryRunes)
	case "search.answer_limit":
		return strconv.Itoa(s.Search.AnswerLimit)
	case "ingest.queue_size":
		return strconv.Itoa(s.Ingest.QueueSize)
	case "ingest.backfill_interval":
		return s.Ingest.BackfillInterval.String()
	case "ingest.backfill_batch":
		return strconv.Itoa(s.Ingest.BackfillBatch)
	case "storage.data_dir":
		return s.Storage.DataDir
	}
	return ""
}
