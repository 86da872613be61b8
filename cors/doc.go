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

// Package cors answers CORS preflight requests and adds origin and
// credentials headers to actual responses.
//
// A request is a preflight when its method is OPTIONS and it carries both
// Origin and Access-Control-Request-Method. [PreflightStage] answers it
// with 204 and never runs the resource method; [Finisher] post-processes
// all other responses.
//
//	policy := cors.New(cors.WithAllowOrigins("https://a.example"))
//	p := pipeline.MustNew(
//	    pipeline.WithStages(cors.PreflightStage(policy)),
//	    pipeline.WithFinishers(cors.Finisher(policy, logger)),
//	)
//
// Origins are matched exactly. A matching Origin is echoed in
// Access-Control-Allow-Origin and "Origin" is added to Vary once.
// Access-Control-Allow-Credentials is "true" or absent.
package cors
