/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package consensus

import (
	"math/rand"
	"time"
)

// Clock abstracts wall-clock time so tests can drive elections and
// heartbeats deterministically instead of racing real timers.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// randomElectionTimeout draws the base interval scaled by a uniform factor
// in [1, 2), per the election timer design: independent per node so split
// votes are unlikely to repeat.
func randomElectionTimeout(rng *rand.Rand, base time.Duration) time.Duration {
	factor := 1 + rng.Float64()
	return time.Duration(float64(base) * factor)
}
