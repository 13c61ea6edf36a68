package privacy

import "strings"

// Customer identifiers and chat content are masked before they reach the
// logs. Only enough survives to correlate entries during debugging.

// MaskPhone masks a phone number showing only the last 4 digits.
// Example: "+27821234567" -> "+*******4567"
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		digits := phone[1:]
		if len(digits) <= 4 {
			return "+" + strings.Repeat("*", len(digits))
		}
		return "+" + strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
	}
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskEmail masks the local part of an email address.
// Example: "jane.smith@example.com" -> "j*********@example.com"
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return email
	}
	local := email[:at]
	if len(local) == 1 {
		return "*" + email[at:]
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + email[at:]
}

// MaskID shortens an opaque identifier to its last 8 characters, enough
// to correlate log lines without exposing the full value.
func MaskID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return "..." + id[len(id)-8:]
}

// MaskMessageBody replaces chat content with a length marker. Message
// text never appears in logs.
func MaskMessageBody(body string) string {
	if body == "" {
		return ""
	}
	return strings.Repeat("*", min(len(body), 8))
}
