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


// Package config loads daemon configuration from a TOML file.
//
// Every field has a working default, so a missing file or an empty file
// yields a usable configuration. Values in the file override defaults
// field by field. Durations are expressed in integer milliseconds or
// seconds to keep the file format obvious.
package config
