package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SettingsPatch lists the settings a definition update may change. Nil
// fields are left alone. The share token, share password and API keys are
// not patchable; they change only through the sharing operations.
type SettingsPatch struct {
	Anonymous     *bool
	AllowMultiple *bool
	// ExpiresAt sets the expiry; ClearExpiresAt removes it.
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	RequireLogin   *bool
	AllowedUsers   *[]string
	AllowedGroups  *[]string
	ShowResults    *ShowResults
	Webhooks       *[]Webhook
}

// UnmarshalJSON decodes a settings object using the stored wire names.
// "expires_at": null clears the expiry. Secret and unknown keys are errors.
func (p *SettingsPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("settings must be an object")
	}

	var out SettingsPatch
	for key, val := range raw {
		var err error
		switch key {
		case "anonymous":
			err = json.Unmarshal(val, &out.Anonymous)
		case "allow_multiple":
			err = json.Unmarshal(val, &out.AllowMultiple)
		case "expires_at":
			if string(val) == "null" {
				out.ClearExpiresAt = true
				continue
			}
			err = json.Unmarshal(val, &out.ExpiresAt)
		case "require_login":
			err = json.Unmarshal(val, &out.RequireLogin)
		case "allowed_users":
			err = json.Unmarshal(val, &out.AllowedUsers)
		case "allowed_groups":
			err = json.Unmarshal(val, &out.AllowedGroups)
		case "show_results":
			err = json.Unmarshal(val, &out.ShowResults)
		case "webhooks":
			err = json.Unmarshal(val, &out.Webhooks)
		case "public_token", "share_password_hash", "api_keys":
			return fmt.Errorf("setting %q can only be changed through sharing", key)
		default:
			return fmt.Errorf("unknown setting %q", key)
		}
		if err != nil {
			return fmt.Errorf("setting %q: %w", key, err)
		}
	}
	*p = out
	return nil
}

// Apply merges the patch into s.
func (p SettingsPatch) Apply(s *Settings) error {
	if p.ShowResults != nil {
		switch *p.ShowResults {
		case ShowResultsNever, ShowResultsAfterSubmit, ShowResultsAlways:
		default:
			return fmt.Errorf("invalid show_results %q", *p.ShowResults)
		}
		s.ShowResults = *p.ShowResults
	}
	if p.Anonymous != nil {
		s.Anonymous = *p.Anonymous
	}
	if p.AllowMultiple != nil {
		s.AllowMultiple = *p.AllowMultiple
	}
	if p.ClearExpiresAt {
		s.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		s.ExpiresAt = &t
	}
	if p.RequireLogin != nil {
		s.RequireLogin = *p.RequireLogin
	}
	if p.AllowedUsers != nil {
		s.AllowedUsers = *p.AllowedUsers
	}
	if p.AllowedGroups != nil {
		s.AllowedGroups = *p.AllowedGroups
	}
	if p.Webhooks != nil {
		s.Webhooks = *p.Webhooks
	}
	return nil
}
