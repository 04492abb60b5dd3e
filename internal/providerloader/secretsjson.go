package providerloader

import "encoding/json"

// decodeSecretsJSON decodes a decrypted credential payload, which is
// always a flat JSON object of string keys to string values (the shape
// the registry's upload/patch secrets endpoints accept).
func decodeSecretsJSON(plaintext []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(plaintext) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(plaintext, &out); err != nil {
		return nil, err
	}
	return out, nil
}
