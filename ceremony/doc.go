/*
Package ceremony manages the shared security parameters between Prover and
Verifier that the plonk protocol requires.

The creation of these parameters requires a "trusted setup" procedure, so
called because it is critical to run the procedure correctly to ensure the
security of proof verifications.

To make the risk of a dishonest setup statistically insignificant, a
distributed, permissionless ceremony, open to everyone, can be run. The
ceremony guarantees security as long as at least one participant is honest:
all the participants would need to collude together to act maliciously.

For the BN254 curve the pipeline can import the parameters of the battle
tested perpetual powers-of-tau ceremony used by projects such as Semaphore,
Hermez, Tornado Cash and snarkjs, whose files support circuits of up to 2^27
constraints. Learn more about the ceremony here:
https://github.com/privacy-scaling-explorations/perpetualpowersoftau

Alternatively, a local ceremony can be run: initialize a phase-1 accumulator,
apply one or more contributions, and prepare it for phase 2. A local ceremony
is only as trustworthy as its contributors, but it keeps the whole pipeline
self-contained and is useful for development and private deployments.

Accumulators are stored on disk in a binary format made of a fixed header
(magic, curve, power, phase, contribution records) followed by the SRS
serialized in gnark-crypto format. Files from the snarkjs perpetual
powers-of-tau ceremony can be imported as already-prepared phase-2
parameters, see ImportPtau.
*/
package ceremony
