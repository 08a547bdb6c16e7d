// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"errors"
	"fmt"
)

// ErrInvalidAction is returned when a scoring action violates a
// precondition (steal with empty bases, action on a completed game, undo
// beyond the start of the log). The engine rejects the action without
// mutating state and without appending an event.
var ErrInvalidAction = errors.New("invalid action")

// SetupError reports an invalid game configuration, raised before any
// live state is created.
type SetupError struct {
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("game setup: %s", e.Reason)
}
