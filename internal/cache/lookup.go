// Copyright 2026 Blink Labs Software
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

// Package cache implements C4: a block-scoped, in-memory staging area for
// every entity touched while processing one block, prefetched in bulk
// before the transition engine runs and flushed in bulk once it finishes.
package cache

// lookupState distinguishes "definitively absent" from "found" from
// "error encountered resolving this lookup", replacing an ad-hoc boolean
// guard with a tagged result.
type lookupState int

const (
	stateAbsent lookupState = iota
	stateFound
	stateErr
)

// Lookup is the three-valued result of a cache read.
type Lookup[T any] struct {
	state lookupState
	value T
	err   error
}

func Found[T any](v T) Lookup[T] { return Lookup[T]{state: stateFound, value: v} }

func Absent[T any]() Lookup[T] { return Lookup[T]{state: stateAbsent} }

func Failed[T any](err error) Lookup[T] { return Lookup[T]{state: stateErr, err: err} }

func (l Lookup[T]) IsFound() bool { return l.state == stateFound }

func (l Lookup[T]) IsAbsent() bool { return l.state == stateAbsent }

func (l Lookup[T]) Err() error { return l.err }

// Value returns the wrapped value and whether the lookup succeeded. Callers
// that don't care about the absent/error distinction can use this directly.
func (l Lookup[T]) Value() (T, bool) { return l.value, l.state == stateFound }
