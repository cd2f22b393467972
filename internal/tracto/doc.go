// Package tracto implements batched streamline propagation over a
// diffusion-weighted volume. Seed points are tracked bidirectionally by
// repeatedly sampling the local signal, feeding a bounded history of
// samples into a direction predictor, re-orienting the predicted
// direction against the particle's travel direction, and advancing by a
// fixed step width until a termination condition is met.
//
// The predictor itself is an external collaborator: the engine only
// depends on the Predictor contract and never on a concrete model.
package tracto
