// Package dsp holds the signal primitives shared by the pulse pipeline.
//
// Responsibilities: local extremum search, Savitzky-Golay smoothing and
// differentiation, zero-phase Butterworth low-pass filtering, polynomial
// baseline removal, trimmed means and sampled-data quadrature.
//
// Everything here is a pure function of its inputs. No session state and no
// logging belongs in this package.
package dsp
