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

package cors

import (
	"net/http"

	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// PreflightStage answers preflight requests with the policy's preflight
// response without running the rest of the chain. Other requests pass
// through.
func PreflightStage(policy Policy) pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange, next pipeline.Handler) (*response.Response, error) {
		if !policy.IsPreflightRequest(x.Request) {
			return next.Handle(x)
		}
		x.Logger.Debug("answering CORS preflight",
			"origin", x.Request.Header.Get(HeaderOrigin),
			"request_method", x.Request.Header.Get(HeaderAccessControlRequestMethod),
		)
		return policy.CreatePreflightResponse(x.Request)
	})
}

// Finisher post-processes actual (non-preflight) responses. Finishers
// cannot fail, so a policy error is logged at FATAL and the response is
// written without CORS headers.
func Finisher(policy Policy, logger *logging.Logger) pipeline.Finisher {
	if logger == nil {
		logger = logging.Discard()
	}
	return pipeline.FinisherFunc(func(req *http.Request, resp *response.Response, rc *resource.RequestContext) {
		if policy.IsPreflightRequest(req) {
			return
		}
		if err := policy.PostProcess(req, resp); err != nil {
			logging.NewContextLogger(req.Context(), logger).
				WithRequestID(rc.RequestID()).
				Fatal("CORS post-processing failed", logging.ErrorAttr(err))
		}
	})
}
