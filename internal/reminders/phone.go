package reminders

import "strings"

// FormatPhoneNumber converts a Swedish number to E.164. Spaces and hyphens are removed;
// a leading 0 becomes +46. Anything else is assumed to be formatted already.
func FormatPhoneNumber(number string) string {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(number)
	if strings.HasPrefix(clean, "0") {
		return "+46" + clean[1:]
	}
	return clean
}
