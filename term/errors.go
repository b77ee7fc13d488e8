package term

import "github.com/pkg/errors"

var errNotAProperList = errors.New("term: not a proper list")
