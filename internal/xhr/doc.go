// Package xhr models the XMLHttpRequest transfer lifecycle: readiness
// transitions, listener registration, and the exact ordered event
// sequence each transport outcome produces under a given quirk profile.
package xhr
