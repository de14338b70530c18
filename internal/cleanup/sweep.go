package cleanup

// Sweep deletes every file in dir matching any of the glob patterns, in
// pattern order. A pattern matching nothing is success, not an error. Same
// best-effort per-file semantics as Prune.
func Sweep(dir string, patterns []string) (Result, error) {
	var res Result
	for _, pattern := range patterns {
		matches, err := matchDir(dir, pattern)
		if err != nil {
			return res, err
		}

		r := Remove(matches)
		res.Deleted += r.Deleted
		res.Errors = append(res.Errors, r.Errors...)
	}

	logger.Infof("sweep: dir=%s patterns=%d deleted=%d failed=%d",
		dir, len(patterns), res.Deleted, len(res.Errors))
	return res, nil
}
