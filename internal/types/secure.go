package types

// redacted is the string substituted for secret values in logs and output.
const redacted = "[REDACTED]"

// redactedJSON is the pre-computed JSON encoding of the redacted marker.
var redactedJSON = []byte(`"[REDACTED]"`)

// SecretString prevents accidental logging or serialization of sensitive
// values (backend API keys, the site key, database URLs). String() and
// MarshalJSON() return a redacted marker so secrets never leak through fmt
// functions or JSON output.
//
// Call Unmask() only where the plaintext is genuinely required, such as
// building an Authorization header or a connection string.
type SecretString string

// String returns the redacted marker instead of the raw value. Invoked by
// fmt verbs through the fmt.Stringer interface.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON returns the redacted marker as a JSON string so secrets stay
// out of serialized config dumps, API responses, and structured logs.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}
