// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for taste analysis and recommendations:
//  1. [SummaryView] : Library summary and taste cluster browser
//  2. [AnalysisView] : Watch a running analysis with a live progress bar
//  3. [KindSelectView] : Pick a recommendation style (cluster, nostalgia, forgotten)
//  4. [BatchView] : Review a fresh batch and submit feedback
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Analysis progress is polled from the progress store on a short tick, keeping the
// view current while the background run does the work.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n/w, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
