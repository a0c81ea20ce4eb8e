package xhr

import "fmt"

// Profile selects an engine quirk variant. Profiles differ only in the
// ordering and duplication of non-terminal events; terminal-outcome
// classification is identical across all of them.
type Profile string

const (
	// ProfileDefault matches the event order shared by modern engines.
	ProfileDefault Profile = "default"
	// ProfileLegacyIE reproduces the duplicate readystatechange older IE
	// releases fire at Opened when an asynchronous send begins.
	ProfileLegacyIE Profile = "legacy-ie"
)

// Profiles returns all known quirk profiles.
func Profiles() []Profile {
	return []Profile{ProfileDefault, ProfileLegacyIE}
}

// ParseProfile resolves a profile name. The empty string means
// ProfileDefault.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case "":
		return ProfileDefault, nil
	case ProfileDefault:
		return ProfileDefault, nil
	case ProfileLegacyIE:
		return ProfileLegacyIE, nil
	default:
		return "", fmt.Errorf("unknown quirk profile %q", s)
	}
}

// echoesOpenedOnSend reports whether an asynchronous Send fires an extra
// readystatechange at Opened before loadstart.
func (p Profile) echoesOpenedOnSend() bool {
	return p == ProfileLegacyIE
}

// keywordFirst reports whether the keyword-slot handler runs before the
// explicit listener sequence. All known profiles agree on this; it stays
// a profile decision so a future variant can change the interleaving
// without touching the dispatcher.
func (p Profile) keywordFirst() bool {
	return true
}
