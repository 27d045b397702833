package activation

import (
	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the JSON schema of T.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

// Schemas returns the schemas of the activation wire types keyed by name.
func Schemas() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"request":   GenerateSchema[Request](),
		"response":  GenerateSchema[Response](),
		"diagnosis": GenerateSchema[Diagnosis](),
	}
}
