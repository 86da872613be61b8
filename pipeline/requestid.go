// Copyright 2025 The Rivaas Authors
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

package pipeline

import (
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

var (
	ulidEntropy     = ulid.Monotonic(rand.Reader, 0)
	ulidEntropyLock sync.Mutex
)

// NewULID generates 26 character, time-ordered request ids. Ids created
// within one millisecond are monotonic.
func NewULID() string {
	ulidEntropyLock.Lock()
	defer ulidEntropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// requestIDFinisher echoes the request id in the response.
type requestIDFinisher struct{}

func (requestIDFinisher) Finish(_ *http.Request, resp *response.Response, rc *resource.RequestContext) {
	resp.Header().Set(resource.HeaderRequestID, rc.RequestID())
}
