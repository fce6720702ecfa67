package config

const defaultDataDir = "/usr/local/var/precedex/data"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = defaultDataDir + "/cases.db"
	}
	if cfg.Storage.VectorLogPath == "" {
		cfg.Storage.VectorLogPath = defaultDataDir + "/vectors.bin"
	}
	if cfg.Storage.ModelPath == "" {
		cfg.Storage.ModelPath = defaultDataDir + "/model.json"
	}
	if cfg.Storage.FilesDir == "" {
		cfg.Storage.FilesDir = defaultDataDir + "/files"
	}
	if cfg.Vectorizer.MinDocFreq == 0 {
		cfg.Vectorizer.MinDocFreq = 2
	}
	if cfg.Vectorizer.MaxDocRatio == 0 {
		cfg.Vectorizer.MaxDocRatio = 0.8
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 10
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 200
	}
	if cfg.Intake.Extensions == nil {
		cfg.Intake.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Intake.Directories) > 0 && cfg.Intake.Recursive == nil {
		t := true
		cfg.Intake.Recursive = &t
	}
}
