package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/tensorscope/internal/telemetry"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tag constraints and the rules that span several
// fields.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed on '%s' (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Remote.Type == RemoteS3 && cfg.Remote.S3.Bucket == "" {
		return fmt.Errorf("remote.s3.bucket is required when remote.type is %q", RemoteS3)
	}
	if (cfg.Remote.S3.AccessKeyID == "") != (cfg.Remote.S3.SecretAccessKey == "") {
		return fmt.Errorf("remote.s3.access_key_id and remote.s3.secret_access_key must be set together")
	}
	if cfg.Remote.S3.KeyPrefix != "" && !strings.HasSuffix(cfg.Remote.S3.KeyPrefix, "/") {
		return fmt.Errorf("remote.s3.key_prefix must end with '/'")
	}
	if strings.Contains(cfg.Remote.Revision, "..") {
		return fmt.Errorf("remote.revision %q is invalid", cfg.Remote.Revision)
	}
	if cfg.Telemetry.Profiling.Enabled {
		if _, err := telemetry.ParseProfileTypes(cfg.Telemetry.Profiling.ProfileTypes); err != nil {
			return fmt.Errorf("telemetry.profiling.profile_types: %w", err)
		}
	}

	return nil
}
