package config

// applyLocalDefaults points artifacts at the compose minio and keeps the
// archive on a local sqlite file unless configured otherwise.
func applyLocalDefaults(cfg *Config, get func(string) string) {
	if minio := get("ARTIFACT_MINIO_ENDPOINT"); minio != "" {
		cfg.Artifact.Enabled = true
		cfg.Artifact.Endpoint = minio
		cfg.Artifact.UseSSL = false
		cfg.Artifact.AccessKey = firstNonEmpty(cfg.Artifact.AccessKey, "uiagent")
		cfg.Artifact.SecretKey = firstNonEmpty(cfg.Artifact.SecretKey, "uiagent123")
	}
	if cfg.Archive.Driver == "sqlite" && cfg.Archive.DSN == "" {
		cfg.Archive.DSN = "file:uiagent.db?_pragma=busy_timeout(5000)"
	}
}
