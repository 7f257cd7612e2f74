package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ironsheep/image-redactor/internal/redacterr"
)

// EnvPrefix prefixes every environment override, e.g. IMAGE_REDACTOR_REDACTION_RATIO.
const EnvPrefix = "IMAGE_REDACTOR"

// Load builds a Config from defaults, an optional .env file, environment
// variables and an optional config file, then validates it.
//
// When path is empty, a file named "redactor" (yaml, toml or json) is searched
// in the working directory and in $HOME/.config/image-redactor; not finding one
// is not an error. An explicit path that cannot be read is.
//
// Proxy settings are resolved here, once, from HTTPS_PROXY/HTTP_PROXY when the
// config does not set model.proxy_url. Downstream components only see the
// explicit value.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, redacterr.EPath(redacterr.Configuration, "config.load", path, err)
		}
	} else {
		v.SetConfigName("redactor")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/image-redactor")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, redacterr.E(redacterr.Configuration, "config.load", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, redacterr.E(redacterr.Configuration, "config.unmarshal", err)
	}

	if cfg.Model.ProxyURL == "" {
		cfg.Model.ProxyURL = ProxyFromEnv(os.LookupEnv)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ProxyFromEnv returns the first proxy URL found in the conventional variables,
// preferring HTTPS over HTTP and upper case over lower case.
func ProxyFromEnv(lookup func(string) (string, bool)) string {
	for _, key := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if val, ok := lookup(key); ok && val != "" {
			return val
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("model.url", d.Model.URL)
	v.SetDefault("model.cache_dir", d.Model.CacheDir)
	v.SetDefault("model.filename", d.Model.Filename)
	v.SetDefault("model.min_size_bytes", d.Model.MinSizeBytes)
	v.SetDefault("model.extension", d.Model.Extension)
	v.SetDefault("model.proxy_url", d.Model.ProxyURL)
	v.SetDefault("model.insecure_skip_verify", d.Model.InsecureSkipVerify)
	v.SetDefault("model.timeout", d.Model.Timeout)

	v.SetDefault("detection.confidence_threshold", d.Detection.ConfidenceThreshold)
	v.SetDefault("detection.nms_threshold", d.Detection.NMSThreshold)
	v.SetDefault("detection.input_width", d.Detection.InputWidth)
	v.SetDefault("detection.input_height", d.Detection.InputHeight)
	v.SetDefault("detection.top_k", d.Detection.TopK)
	v.SetDefault("detection.min_face_size", d.Detection.MinFaceSize)

	v.SetDefault("redaction.ratio", d.Redaction.Ratio)
	v.SetDefault("redaction.pixelate", d.Redaction.Pixelate)
	v.SetDefault("redaction.blur_strength", d.Redaction.BlurStrength)
	v.SetDefault("redaction.margin_ratio", d.Redaction.MarginRatio)

	v.SetDefault("processing.supported_extensions", d.Processing.SupportedExtensions)
	v.SetDefault("processing.max_image_size", d.Processing.MaxImageSize)
	v.SetDefault("processing.output_quality", d.Processing.OutputQuality)

	v.SetDefault("objects.enabled", d.Objects.Enabled)
	v.SetDefault("objects.model_path", d.Objects.ModelPath)
	v.SetDefault("objects.labels_path", d.Objects.LabelsPath)
	v.SetDefault("objects.labels", d.Objects.Labels)
	v.SetDefault("objects.score_threshold", d.Objects.ScoreThreshold)
	v.SetDefault("objects.nms_threshold", d.Objects.NMSThreshold)
	v.SetDefault("objects.input_size", d.Objects.InputSize)

	v.SetDefault("text.enabled", d.Text.Enabled)
	v.SetDefault("text.language", d.Text.Language)
	v.SetDefault("text.patterns", d.Text.Patterns)
	v.SetDefault("text.min_confidence", d.Text.MinConfidence)
}
