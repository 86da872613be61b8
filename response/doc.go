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

// Package response defines the encoded response produced by the request
// pipeline and the entity response resource methods may return.
//
// A [Response] tracks whether its status was explicitly set, which lets the
// pipeline merge entity metadata without guessing from sentinel values:
//
//	r := response.New()
//	_, ok := r.Status() // ok == false
//	r.SetStatus(http.StatusAccepted)
//
// An [Entity] carries a payload plus status and headers. The pipeline encodes
// the payload with the negotiated converter and then merges the metadata:
// headers are copied only when the encoded response lacks the key, and the
// status only when the entity set one.
package response
