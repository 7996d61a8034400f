// Copyright 2026 CampusFlow
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

/*
Package gateway implements the CampusFlow AI request gateway: the single
policy-governed entry point every AI tool invocation in the product
passes through.

Per request the gateway authenticates the caller, enforces the minors'
consent gate, resolves the model and credentials for the (organization,
tool) pair, evaluates role-based governance rules (raising an approval
workflow on a veto), optionally enriches the prompt with tenant-private
knowledge, calls the external completion provider and records an
immutable audit entry.

Side systems degrade independently: session tracking, audit writes,
knowledge retrieval and tenant-key unwrapping are all best-effort and
never cost the caller a successful completion.
*/
package gateway
