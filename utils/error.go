package utils

import "errors"

var ErrorNotAuthenticated = errors.New("not authenticated")
