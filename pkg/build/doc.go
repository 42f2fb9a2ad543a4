// Package build is the build engine: it loads zones, turns their declared
// sources into a dependency graph, and brings targets up to date.
//
// A Session owns one invocation. Loading runs the root zone's Buildfile;
// each def-zone call loads a further zone, and each def-sources call feeds
// the zone's production engine, which applies production rules to every
// source and to every target they produce until nothing new appears.
//
// Building starts with lockdown. From then on each node's owning zone and
// physical path are fixed. A node is analyzed once, marked built, and then
// its references and components are built. A target's action runs when any
// component, or anything a component refers to, is newer than the target.
// Nodes owned by another zone are built by that zone's engine.
//
// Failures are collected in a fault.Set. Buffered failures let the build
// continue with other targets; a fatal failure, or reaching the session's
// tolerance, stops it.
package build
