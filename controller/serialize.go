// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package controller

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

// redacted replaces the value of secret keys when displayed.
const redacted = "(redacted)"

// EncodeToString encodes the given config into a map of strings. Secret
// values are redacted unless showSecrets is set.
func EncodeToString(cfg Config, showSecrets bool) (map[string]string, error) {
	attrs, err := cfg.Attrs()
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := make(map[string]string, len(attrs))
	for key, v := range attrs {
		if SecretKeys.Contains(key) && !showSecrets {
			if v != "" {
				result[key] = redacted
			} else {
				result[key] = ""
			}
			continue
		}
		switch v := v.(type) {
		case string:
			result[key] = v
		case bool:
			result[key] = fmt.Sprintf("%t", v)
		case int, int8, int16, int32, int64:
			result[key] = fmt.Sprintf("%d", v)
		case time.Duration:
			result[key] = v.String()
		default:
			return nil, errors.Errorf("unable to serialize config key %q: unknown type %T", key, v)
		}
	}
	return result, nil
}
