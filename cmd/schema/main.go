// Command schema regenerates the JSON schema embedded by pkg/config for
// startup verification. Run it through go generate in pkg/config so the
// committed schema.json stays in step with the Config struct.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/atomwire/ingest/pkg/config"
)

func main() {
	out := flag.String("out", "schema.json", "output file path")
	flag.Parse()

	schema := jsonschema.Reflect(&config.Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal schema: %v", err)
	}

	if err := os.WriteFile(*out, data, 0o600); err != nil { //nolint:gosec // schema file is not sensitive
		log.Fatalf("failed to write schema file: %v", err)
	}

	fmt.Printf("config schema written to %s\n", *out)
}
