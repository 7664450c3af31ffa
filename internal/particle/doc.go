// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package particle defines the data that flows through the behavior-injection
// pipeline: the structured Description returned by the remote generator, the
// Color it carries, and the two error kinds that are allowed to cross the
// pipeline boundary.
//
// # Core Concepts
//
//   - Description: what the generator says a particle is. Its name doubles as
//     an identifier inside fragments, so it is normalized before anything else
//     looks at it.
//
//   - Color: exactly three channels in [0,255]. Every constructor clamps, so a
//     Color value is always renderable.
//
//   - GenerationError / RegistrationError: the only failures a caller ever sees.
//     Runtime failures of a registered fragment are contained elsewhere.
//
// Why a separate package?
//
// Validation, sanitization, rewriting, the registry and every generator backend
// all agree on these types. Keeping them free of pipeline logic lets the
// generator backends depend on them without importing the pipeline.
package particle
