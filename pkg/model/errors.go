package model

import "errors"

var ErrConfiguration = errors.New("invalid model configuration")
