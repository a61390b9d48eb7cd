// Package shipeval reproduces the SHIP (State Health Insurance Assistance
// Program) mystery-shopper methodology for evaluating AI-generated Medicare
// guidance.
//
// A scenario (a scripted beneficiary question plus a ground-truth answer key)
// is run against a target language model. The response is decomposed into
// verifiable claims, each claim is judged against the answer key by multiple
// independent verifiers, disagreements are adjudicated, and a four-tier SHIP
// rubric score is assigned. Every artifact produced along the way is
// persisted immutably under a run directory for audit.
//
// This package defines the provider-agnostic contract every LLM adapter
// implements (see the providers subpackages and package base). The rest of
// the pipeline — claim extraction, verification, adjudication, scoring,
// persistence, and orchestration — lives in the claim, verdict, score,
// trial, agents, scoring, store, and orchestrator packages.
package shipeval
