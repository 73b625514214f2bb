package jitdriver

import "github.com/google/uuid"

func newTokenID() string { return uuid.NewString() }
