package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Wallet
	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// Clob
	redact(&out.Clob.ApiKey)
	redact(&out.Clob.ApiSecret)
	redact(&out.Clob.ApiPassphrase)

	// Evidence
	redact(&out.Evidence.OddsAPIKey)
	redact(&out.Evidence.NewsAPIKey)

	// Supabase
	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)

	// Redis
	redact(&out.Redis.Password)

	// S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	redact(&out.Server.APIKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Notify.SlackWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Notify.Events = cloneStrings(cfg.Notify.Events)
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)
	out.Evidence.ESPNLeagues = cloneStrings(cfg.Evidence.ESPNLeagues)
	out.Evidence.OddsSports = cloneStrings(cfg.Evidence.OddsSports)
	out.Blacklist.QuestionPatterns = cloneStrings(cfg.Blacklist.QuestionPatterns)
	out.Blacklist.DescriptionPatterns = cloneStrings(cfg.Blacklist.DescriptionPatterns)
	out.Blacklist.Categories = cloneStrings(cfg.Blacklist.Categories)

	// Copy maps so mutations to the redacted copy do not affect the original.
	if cfg.Evidence.SourceWeights != nil {
		out.Evidence.SourceWeights = make(map[string]float64, len(cfg.Evidence.SourceWeights))
		for k, v := range cfg.Evidence.SourceWeights {
			out.Evidence.SourceWeights[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
