// Package handlers exposes the job queue over HTTP.
//
// Routes:
//   - POST /api/jobs: submit a job (202 with the queued job)
//   - GET /api/jobs: list retained jobs, optionally filtered by ?status=
//   - GET /api/jobs/{id}: job status, progress and result
//   - POST /api/jobs/{id}/cancel, DELETE /api/jobs/{id}: cancel a job that has not started
//   - /healthz, /livez, /readyz, /version
//
// Output locations are never taken from the request: every job writes to
// OUTPUT_DIR/<id>.
package handlers
