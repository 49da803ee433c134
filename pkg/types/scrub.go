// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package types

import "regexp"

var (
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	tokenRe    = regexp.MustCompile(`(?i)(bearer\s+|token[=:\s]+|api[_-]?key[=:\s]+)\S+`)
	passwordRe = regexp.MustCompile(`(?i)(password|passwd|secret)[=:\s]+\S+`)
	hexBlobRe  = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
)

// Scrub removes PII and secrets from a string destined for logs or error
// messages: email addresses, bearer/API tokens, password assignments, and
// long hex blobs.
func Scrub(s string) string {
	s = emailRe.ReplaceAllString(s, "[email]")
	s = tokenRe.ReplaceAllString(s, "$1[redacted]")
	s = passwordRe.ReplaceAllString(s, "$1=[redacted]")
	s = hexBlobRe.ReplaceAllString(s, "[hex]")
	return s
}
