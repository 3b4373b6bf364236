package aes67

// H is a shorthand for JSON-ish maps used in NMOS bodies and app data.
type H map[string]interface{}
