// Package steprunner loads and executes a single step unit.
//
// A CodeRepository maps qualified step names to loadable units. DirRepository
// reads step.yaml descriptors from a process's steps directory and Registry
// holds Go entry functions registered in-process. Runner wraps every execution
// in a Transactor, logs start/complete/failure events, and classifies failures
// as load or runtime errors. Entry routines receive a *Context, the capability
// facade through which they read options, share runtime values, query the
// manifest, request that their children be skipped, and poll for stop requests.
package steprunner
