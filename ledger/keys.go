// Copyright 2025 Proven Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	sops "github.com/getsops/sops/v3"
	"github.com/getsops/sops/v3/decrypt"
)

// LoadOperatorKey reads the operator signing key from a file. The file may
// be sops-encrypted; plaintext files are accepted for development setups.
func LoadOperatorKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read operator key file: %w", err)
	}
	plaintext, err := decrypt.Data(data, "binary")
	if err != nil {
		// Not sops-encrypted, treat the contents as the key itself. Raw
		// key files are also not JSON, which surfaces as an unmarshal
		// error rather than missing metadata.
		if errors.Is(err, sops.MetadataNotFound) ||
			strings.Contains(err.Error(), "unmarshalling input json") {
			return strings.TrimSpace(string(data)), nil
		}
		return "", fmt.Errorf("decrypt operator key: %w", err)
	}
	return strings.TrimSpace(string(plaintext)), nil
}
