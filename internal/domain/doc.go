// Package domain defines the core business entities of the stringing
// application workflow: applications and their lines, credit grants,
// time slots, and the read-side order/rental summaries the workflow
// consumes from collaborator services.
package domain
