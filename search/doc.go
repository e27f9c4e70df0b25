// Copyright 2025 Poiesic Systems
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


// Package search provides hybrid retrieval over indexed document chunks.
//
// The Searcher type runs two retrievals per query and fuses them:
//   - Dense search over vector embeddings
//   - Keyword search over the full-text index (bm25)
//
// The two ranked lists are merged with reciprocal rank fusion, so chunks
// found by both retrievers rank above chunks found by only one. A verbatim
// match boost rewards chunks containing every query word.
package search
