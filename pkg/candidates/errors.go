package candidates

import "errors"

// ErrNoCandidateMatched is returned by TryEach when every candidate
// was attempted (or the set was empty) and none succeeded.
var ErrNoCandidateMatched = errors.New("candidates: no candidate matched")
